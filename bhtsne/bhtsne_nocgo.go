//go:build !cgo || !nativetsne

package bhtsne

import (
	"go.uber.org/zap"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Available reports whether the binary was built with the native library.
const Available = false

// Native is a stub that returns an error when built without nativetsne.
type Native struct{}

// Version is a stub that returns an error when built without nativetsne.
func Version() (string, error) {
	return "", errUnavailable()
}

// New is a stub that returns an error when built without nativetsne.
func New(seed int, log *zap.SugaredLogger) (*Native, error) {
	return nil, errUnavailable()
}

// Embed is a stub that returns an error when built without nativetsne.
func (n *Native) Embed(req *tsne.Request) (*tsne.Result, error) {
	return nil, errUnavailable()
}

func errUnavailable() error {
	return errors.WithHint(
		errors.NewUnavailableError("native t-SNE not available: built without nativetsne support"),
		"rebuild with CGO_ENABLED=1 -tags nativetsne, or use the go backend")
}
