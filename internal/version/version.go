// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/basket/internal/version.version=v1.2.0"
package version

import "fmt"

const product = "basket-optimizer"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// String используется в стартовом логе сервиса.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// UserAgent возвращает User-Agent для внешних API (Nominatim требует осмысленного значения).
func UserAgent() string {
	return product + "/" + version
}
