package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AURORA_TEST_MODE") == "" {
			_ = os.Setenv("AURORA_TEST_MODE", "1")
		}
	})
}
