// Package processor consumes an event stream and fans feature updates out to
// the online and offline stores.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
)

// Event is one incoming observation, a column→value mapping.
type Event map[string]interface{}

// RowWriter is the write surface the processor needs from each store.
type RowWriter interface {
	InsertData(table string, record map[string]interface{}) error
}

// ComputeFunc derives the feature values of one view from an event. The
// default passes event values through and fills declared features absent
// from the event with their zero value; richer derivations plug in here.
type ComputeFunc func(event Event, view *domain.FeatureView) map[string]interface{}

type ProcessorOption func(p *Processor)

func WithComputeFunc(f ComputeFunc) ProcessorOption {
	return func(p *Processor) {
		p.compute = f
	}
}

// WithEventFilter admits only events matching the expression, e.g.
// `total_purchases > 0`. Events failing evaluation are dropped and logged.
func WithEventFilter(src string) ProcessorOption {
	return func(p *Processor) {
		p.filterSrc = src
	}
}

// WithPacing sets the cooperative delay between events in Run.
func WithPacing(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.pacing = d
	}
}

func WithLogger(l domain.Logger) ProcessorOption {
	return func(p *Processor) {
		p.Logger = l
	}
}

func WithErrorLogger(l domain.Logger) ProcessorOption {
	return func(p *Processor) {
		p.ErrorLogger = l
	}
}

// Processor routes each event to every feature view whose entity keys the
// event carries, computes the view's feature values, and writes the record
// to both stores. The two writes are independent: one can land without the
// other, and the consistency checker is what eventually surfaces that.
type Processor struct {
	registry *domain.FeatureViewRegistry
	online   RowWriter
	offline  RowWriter

	compute   ComputeFunc
	filterSrc string
	filter    *vm.Program
	pacing    time.Duration

	Logger      domain.Logger
	ErrorLogger domain.Logger
}

func NewProcessor(registry *domain.FeatureViewRegistry, online, offline RowWriter, opts ...ProcessorOption) (*Processor, error) {
	p := &Processor{
		registry: registry,
		online:   online,
		offline:  offline,
		compute:  defaultCompute,
		pacing:   100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.filterSrc != "" {
		program, err := expr.Compile(p.filterSrc, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile event filter error, err=%v", err)
		}
		p.filter = program
	}

	return p, nil
}

// ProcessEvent updates every applicable feature view from one event. An
// event applies to a view iff it carries a value for each of the view's
// entity key columns.
func (p *Processor) ProcessEvent(event Event) {
	if p.filter != nil {
		out, err := expr.Run(p.filter, map[string]interface{}(event))
		if err != nil {
			p.logError("event filter error, err=%v", err)
			return
		}
		if admitted, ok := out.(bool); !ok || !admitted {
			return
		}
	}

	for _, name := range p.registry.ListFeatureViews() {
		view := p.registry.GetFeatureView(name)
		if view == nil || !p.eventApplies(event, view) {
			continue
		}
		p.updateFeatures(event, view)
	}
}

func (p *Processor) eventApplies(event Event, view *domain.FeatureView) bool {
	if len(view.Entities) == 0 {
		return false
	}
	for _, entity := range view.Entities {
		if _, ok := event[entity]; !ok {
			return false
		}
	}
	return true
}

func (p *Processor) updateFeatures(event Event, view *domain.FeatureView) {
	record := p.compute(event, view)

	for _, entity := range view.Entities {
		record[entity] = event[entity]
	}

	if err := p.online.InsertData(view.Name, record); err != nil {
		p.logError("online write error, view=%s, err=%v", view.Name, err)
	}
	if err := p.offline.InsertData(view.Name, record); err != nil {
		p.logError("offline write error, view=%s, err=%v", view.Name, err)
	}
}

// Run consumes events until the stream closes or the context is cancelled,
// pausing between events as cooperative pacing.
func (p *Processor) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			p.ProcessEvent(event)
		}

		if p.pacing > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pacing):
			}
		}
	}
}

func defaultCompute(event Event, view *domain.FeatureView) map[string]interface{} {
	computed := make(map[string]interface{}, len(view.Features)+len(view.Entities))
	for _, feature := range view.Features {
		if value, ok := event[feature.Name]; ok {
			computed[feature.Name] = value
		} else {
			computed[feature.Name] = zeroValue(feature.Dtype)
		}
	}
	return computed
}

func zeroValue(t constants.FSType) interface{} {
	switch t {
	case constants.FS_INT32, constants.FS_INT64:
		return int64(0)
	case constants.FS_FLOAT, constants.FS_DOUBLE:
		return float64(0)
	case constants.FS_BOOLEAN:
		return false
	case constants.FS_TIMESTAMP:
		return time.Time{}
	}
	return ""
}

func (p *Processor) logError(format string, v ...interface{}) {
	if p.ErrorLogger != nil {
		p.ErrorLogger.Printf(format, v...)
		return
	}

	if p.Logger != nil {
		p.Logger.Printf(format, v...)
	}
}
