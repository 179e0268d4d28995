package miscutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"reflect"
	"time"

	"github.com/hengadev/miscutils/internal/monitoring"
	"github.com/hengadev/miscutils/internal/pickle"
	"github.com/hengadev/miscutils/internal/placeholder"
	"github.com/hengadev/miscutils/internal/repair"
	"github.com/hengadev/miscutils/internal/serialization"
)

// Codec turns values into bytes and back.
type Codec = serialization.Codec

// CodecType names a built-in codec.
type CodecType = serialization.CodecType

const (
	// CodecPickle keeps types, shared references and cycles. It is the
	// default.
	CodecPickle = serialization.Pickle
	// CodecJSON writes plain JSON. Cycles cannot be written and decoded
	// values lose their Go types.
	CodecJSON = serialization.JSON
)

// Transform is applied to the encoded bytes on their way to and from the
// store.
type Transform interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// Serializer writes values to a Store, replacing what the codec cannot carry
// with placeholders. It is safe for concurrent use; concurrent writers to the
// same Store are not coordinated.
type Serializer struct {
	store     Store
	codec     Codec
	codecType CodecType
	registry  *Registry
	transform Transform
	logger    *slog.Logger
	hooks     []ObservabilityHook
	metrics   MetricsCollector
	maxDepth  int

	hook   ObservabilityHook
	walker *repair.Walker
}

// NewSerializer returns a Serializer over store.
func NewSerializer(store Store, opts ...Option) (*Serializer, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Serializer{
		store:     store,
		codecType: CodecPickle,
		registry:  defaultRegistry,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   &monitoring.NoOpMetricsCollector{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.codec == nil {
		var codecOpts []pickle.Option
		if s.maxDepth > 0 {
			codecOpts = append(codecOpts, pickle.WithMaxDepth(s.maxDepth))
		}
		s.codec = s.codecType.New(s.registry, codecOpts...)
	}

	walkerOpts := []repair.Option{repair.WithLogger(s.logger)}
	if s.maxDepth > 0 {
		walkerOpts = append(walkerOpts, repair.WithMaxDepth(s.maxDepth))
	}
	s.walker = repair.New(s.codec, walkerOpts...)

	hooks := append([]ObservabilityHook(nil), s.hooks...)
	if _, noop := s.metrics.(*monitoring.NoOpMetricsCollector); !noop {
		hooks = append(hooks, monitoring.NewMetricsObservabilityHook(s.metrics))
	}
	switch len(hooks) {
	case 0:
		s.hook = &monitoring.NoOpObservabilityHook{}
	case 1:
		s.hook = hooks[0]
	default:
		s.hook = monitoring.NewCompositeObservabilityHook(hooks...)
	}

	return s, nil
}

// Codec returns the codec in use.
func (s *Serializer) Codec() Codec { return s.codec }

// Store returns the backing store.
func (s *Serializer) Store() Store { return s.store }

// Serialize encodes obj and writes it to the store. Values the codec cannot
// carry are replaced by placeholders and listed in the report; only storage,
// depth and transform failures are returned as errors.
func (s *Serializer) Serialize(ctx context.Context, obj any) (report *Report, err error) {
	meta := s.metadata()
	start := s.begin(ctx, OpSerialize, meta)
	defer func() { s.end(ctx, OpSerialize, start, err, meta) }()

	data, report, err := s.encode(ctx, OpSerialize, obj)
	if err != nil {
		return report, err
	}
	meta["bytes"] = len(data)

	if err := s.store.WriteBytes(ctx, data); err != nil {
		return report, newStorageError("write", err)
	}
	return report, nil
}

// ToBytes encodes obj without touching the store.
func (s *Serializer) ToBytes(obj any) (data []byte, report *Report, err error) {
	ctx := context.Background()
	meta := s.metadata()
	start := s.begin(ctx, OpToBytes, meta)
	defer func() { s.end(ctx, OpToBytes, start, err, meta) }()

	data, report, err = s.encode(ctx, OpToBytes, obj)
	meta["bytes"] = len(data)
	return data, report, err
}

// Deserialize reads the store and decodes its contents. An empty or missing
// slot yields (nil, nil).
func (s *Serializer) Deserialize(ctx context.Context) (v any, err error) {
	meta := s.metadata()
	start := s.begin(ctx, OpDeserialize, meta)
	defer func() { s.end(ctx, OpDeserialize, start, err, meta) }()

	data, err := s.store.ReadBytes(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("read", err)
	}
	meta["bytes"] = len(data)
	return s.decode(data)
}

// FromBytes decodes data. Empty data yields (nil, nil).
func (s *Serializer) FromBytes(data []byte) (v any, err error) {
	ctx := context.Background()
	meta := s.metadata()
	meta["bytes"] = len(data)
	start := s.begin(ctx, OpFromBytes, meta)
	defer func() { s.end(ctx, OpFromBytes, start, err, meta) }()

	return s.decode(data)
}

func (s *Serializer) encode(ctx context.Context, op string, obj any) ([]byte, *Report, error) {
	data, report, err := s.marshal(obj)
	if err != nil {
		return nil, report, err
	}
	for _, l := range report.Losses {
		s.logger.Warn("value lost", "operation", op, "path", l.Path, "type", l.Type, "repr", l.Repr, "reason", l.Reason)
		s.hook.OnLoss(ctx, op, LossEvent{Path: l.Path, Type: l.Type, Repr: l.Repr, Reason: l.Reason})
	}

	if s.transform != nil {
		sealed, err := s.transform.Seal(data)
		if err != nil {
			return nil, report, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
		}
		data = sealed
	}
	return data, report, nil
}

func (s *Serializer) marshal(obj any) ([]byte, *Report, error) {
	tags := map[string]string{"codec": s.codec.Name()}

	data, err := s.codec.Marshal(obj)
	if err == nil {
		s.metrics.IncrementCounter(MetricEncodeDirect, tags)
		return data, &Report{}, nil
	}
	s.logger.Debug("direct encode failed, repairing", "codec", s.codec.Name(), "error", err)

	repaired, report, err := s.walker.Repair(obj)
	if err != nil {
		return nil, report, newDepthError(err)
	}

	data, err = s.codec.Marshal(repaired)
	if err == nil {
		s.metrics.IncrementCounter(MetricEncodeRepaired, tags)
		return data, report, nil
	}
	if errors.Is(err, pickle.ErrDepthExceeded) {
		return nil, report, newDepthError(err)
	}
	s.logger.Debug("repaired graph rejected, storing root placeholder", "error", err)

	lost := placeholder.New(repair.Repr(reflect.ValueOf(obj)))
	report.Add(Loss{
		Path:   "$",
		Type:   fmt.Sprintf("%T", obj),
		Repr:   lost.Repr,
		Reason: "repaired graph could not be encoded: " + err.Error(),
	})
	report.Placeholders++

	data, err = s.codec.Marshal(lost)
	if err != nil {
		return nil, report, fmt.Errorf("encode root placeholder: %w", err)
	}
	s.metrics.IncrementCounter(MetricEncodeFallback, tags)
	return data, report, nil
}

func (s *Serializer) decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if s.transform != nil {
		opened, err := s.transform.Open(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		data = opened
	}
	v, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, newDecodeError(s.codec.Name(), err)
	}
	return v, nil
}

func (s *Serializer) metadata() map[string]any {
	return map[string]any{"codec": s.codec.Name()}
}

func (s *Serializer) begin(ctx context.Context, op string, meta map[string]any) time.Time {
	s.hook.OnProcessStart(ctx, op, meta)
	return time.Now()
}

func (s *Serializer) end(ctx context.Context, op string, start time.Time, err error, meta map[string]any) {
	if err != nil {
		s.hook.OnError(ctx, op, err, meta)
	}
	s.hook.OnProcessComplete(ctx, op, time.Since(start), err, meta)
}
