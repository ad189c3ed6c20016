package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// genID builds "<prefix>-<utc nanos>-<seq>". The atomic sequence breaks
// ties when multiple ids are generated within the same nanosecond.
func genID(prefix string) string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("%s-%d-%d", prefix, n, s)
}

// GenConvID generates a unique conversation id.
func GenConvID() string { return genID("conv") }

// GenMsgID generates a unique message id.
func GenMsgID() string { return genID("msg") }

// GenUserID generates a unique user id.
func GenUserID() string { return genID("user") }

// GenItemID generates a unique item id.
func GenItemID() string { return genID("item") }

// GenReportID generates a unique report id.
func GenReportID() string { return genID("report") }

// NowTS returns the current UTC time in nanoseconds, the timestamp format
// stored on every document.
func NowTS() int64 { return time.Now().UTC().UnixNano() }
