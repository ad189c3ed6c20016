package banner

import (
	"fmt"

	"tradepost/pkg/config"
	"tradepost/pkg/httpx"
)

const banner = `
████████╗██████╗  █████╗ ██████╗ ███████╗██████╗  ██████╗ ███████╗████████╗
╚══██╔══╝██╔══██╗██╔══██╗██╔══██╗██╔════╝██╔══██╗██╔═══██╗██╔════╝╚══██╔══╝
   ██║   ██████╔╝███████║██║  ██║█████╗  ██████╔╝██║   ██║███████╗   ██║
   ██║   ██╔══██╗██╔══██║██║  ██║██╔══╝  ██╔═══╝ ██║   ██║╚════██║   ██║
   ██║   ██║  ██║██║  ██║██████╔╝███████╗██║     ╚██████╔╝███████║   ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚═╝      ╚═════╝ ╚══════╝   ╚═╝
`

// Print shows the startup banner with the effective configuration summary
// and a short production checklist.
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	if addr == "" && cfg != nil {
		addr = cfg.Addr()
	}
	if dbPath == "" && cfg != nil {
		dbPath = cfg.Storage.DBPath
	}
	if source == "" {
		source = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", source)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/conversations' -d '{\"receiver_id\":\"u2\",\"item_id\":\"item-1\",\"initial_message\":\"hi\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/conversations'")
	fmt.Println("\n== Production? =================================================")

	be, fe, ak, sk := 0, 0, 0, 0
	if cfg != nil {
		be = len(cfg.Security.APIKeys.Backend)
		fe = len(cfg.Security.APIKeys.Frontend)
		ak = len(cfg.Security.APIKeys.Admin)
		sk = len(cfg.Security.SigningKeys)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}
	if sk > 0 {
		fmt.Printf("- Signing keys: OK (%d)\n", sk)
	} else {
		fmt.Println("- Signing keys: MISSING (required to verify user identities)")
	}

	if cfg != nil && httpx.TLSConfigured(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile) {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	modEnabled := cfg != nil && cfg.Moderation.Enabled
	if modEnabled {
		info := ""
		if cfg.Moderation.Cron != "" {
			info = "cron=" + cfg.Moderation.Cron
		} else if cfg.Moderation.Period > 0 {
			info = "period=" + cfg.Moderation.Period.Std().String()
		}
		if info != "" {
			fmt.Printf("- Moderation purge: enabled (%s)\n", info)
		} else {
			fmt.Println("- Moderation purge: enabled")
		}
	} else {
		fmt.Println("- Moderation purge: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
