package quotecache

import (
	"fmt"
	"time"
)

func errSymbolNotCached(symbol string) error {
	return fmt.Errorf("no cached quote for %s", symbol)
}

func errStaleQuote(symbol string, age time.Duration) error {
	return fmt.Errorf("cached quote for %s is stale (%s old)", symbol, age.Round(time.Millisecond))
}
