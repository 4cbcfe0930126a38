package adapter

import (
	"context"
	"time"

	"nexus-ai-be/pkg/llm"
)

// State of an adapter id in the registry.
type State string

const (
	StateAbsent    State = "absent"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateUnloading State = "unloading"
)

// Handle is a ready adapter shared by every request that references its id.
// It is itself a Backend: generations are bound to the handle's lifetime and
// end with ErrAdapterUnloaded if the adapter is unloaded mid-stream.
type Handle struct {
	Descriptor     Descriptor
	Backend        llm.Backend
	BaseModel      string
	LoadedAt       time.Time
	MemoryEstimate int64

	ctx    context.Context
	cancel context.CancelFunc
}

var _ llm.Backend = &Handle{}

func newHandle(desc Descriptor, backend llm.Backend, baseModel string, loadedAt time.Time) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		Descriptor:     desc,
		Backend:        backend,
		BaseModel:      baseModel,
		LoadedAt:       loadedAt,
		MemoryEstimate: desc.SizeBytes,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (h *Handle) ID() string {
	return h.Descriptor.ID()
}

func (h *Handle) Name() string {
	return "adapter"
}

// Released reports whether the handle has been unloaded.
func (h *Handle) Released() bool {
	return h.ctx.Err() != nil
}

func (h *Handle) release() {
	h.cancel()
}

func (h *Handle) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) <-chan llm.Chunk {
	out := make(chan llm.Chunk)

	if h.Released() {
		go func() {
			defer close(out)
			llm.Send(ctx, out, llm.Chunk{Err: llm.NewBackendError(h.Name(), llm.ErrBackendUnavailable, ErrAdapterUnloaded)})
		}()
		return out
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(h.ctx, cancel)

	go func() {
		defer close(out)
		defer cancel()
		defer stop()

		for chunk := range h.Backend.Stream(streamCtx, history, opts...) {
			if !llm.Send(ctx, out, chunk) {
				return
			}
		}
		if h.Released() && ctx.Err() == nil {
			llm.Send(ctx, out, llm.Chunk{Err: llm.NewBackendError(h.Name(), llm.ErrBackendUnavailable, ErrAdapterUnloaded)})
		}
	}()

	return out
}
