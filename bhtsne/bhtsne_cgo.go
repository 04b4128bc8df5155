//go:build cgo && nativetsne

package bhtsne

/*
#cgo LDFLAGS: -ltsne_multicore -lstdc++ -lm
#cgo CFLAGS: -I${SRCDIR}/include

#include <stdlib.h>
#include "tsne_multicore.h"
*/
import "C"
import (
	"unsafe"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// Available reports whether the binary was built with the native library.
const Available = true

// Native calls libtsne_multicore.
type Native struct {
	seed   int
	logger *zap.SugaredLogger
}

// Version returns the linked library version. The library does not export
// one, so it is fixed at link time through LibraryVersion.
func Version() (string, error) {
	if LibraryVersion == "" {
		return "", errors.New("native library version not set at link time")
	}
	return LibraryVersion, nil
}

// New checks the linked library version and returns a routine.
func New(seed int, log *zap.SugaredLogger) (*Native, error) {
	v, err := Version()
	if err != nil {
		return nil, err
	}
	if err := CheckCompatible(v); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.ComponentLogger("bhtsne")
	}
	log.Debugw("Native t-SNE library loaded", "version", v)
	return &Native{seed: seed, logger: log}, nil
}

// Embed runs the native routine on req.
func (n *Native) Embed(req *tsne.Request) (*tsne.Result, error) {
	if err := Preflight(req); err != nil {
		return nil, err
	}
	rows, dims := req.Rows, int(req.TargetDims)

	// Both buffers live in C memory so the library never holds Go pointers.
	cX := (*C.double)(C.malloc(C.size_t(len(req.X)) * C.size_t(unsafe.Sizeof(C.double(0)))))
	if cX == nil {
		return nil, errors.New("failed to allocate input buffer")
	}
	defer C.free(unsafe.Pointer(cX))
	copy(unsafe.Slice((*float64)(unsafe.Pointer(cX)), len(req.X)), req.X)

	cY := (*C.double)(C.calloc(C.size_t(rows*dims), C.size_t(unsafe.Sizeof(C.double(0)))))
	if cY == nil {
		return nil, errors.Newf("failed to allocate %d x %d output buffer", rows, dims)
	}
	defer C.free(unsafe.Pointer(cY))

	var finalError C.double
	n.logger.Debugw("Calling tsne_run_double", logger.FieldRows, rows, logger.FieldDims, dims)
	C.tsne_run_double(
		cX,
		C.int(req.Rows),
		C.int(req.Cols),
		cY,
		C.int(dims),
		C.double(req.Perplexity),
		C.double(req.Theta),
		C.int(req.NumThreads),
		C.int(req.MaxIter),
		C.int(EarlyExaggerationIters),
		C.int(n.seed),
		C.bool(false),
		C.int(0),
		C.double(EarlyExaggeration),
		C.double(LearningRate),
		&finalError,
		C.int(distanceSquaredEuclidean),
	)

	y := make([]float64, rows*dims)
	copy(y, unsafe.Slice((*float64)(unsafe.Pointer(cY)), rows*dims))

	return &tsne.Result{
		Embedding: mat.NewDense(rows, dims, y),
		Diagnostics: map[string]any{
			tsne.DiagCost:       float64(finalError),
			tsne.DiagIterations: int(req.MaxIter),
			tsne.DiagN:          req.Rows,
			tsne.DiagOrigD:      req.Cols,
			tsne.DiagPerplexity: req.Perplexity,
			tsne.DiagTheta:      req.Theta,
			tsne.DiagNumThreads: int(req.NumThreads),
			tsne.DiagExact:      req.Theta == 0,
		},
	}, nil
}
