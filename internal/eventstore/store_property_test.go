package eventstore

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/me/edaq/pkg/model"
)

var propChannels = []string{"DAPI", "FITC", "TRITC", "Cy5"}

// buildEvents turns generated integers into events on a coarse grid so that
// ties on time and channel are frequent.
func buildEvents(times, channels, zs []int) []model.Event {
	n := min(len(times), len(channels), len(zs))
	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		e := model.At(float64(times[i]) / 2)
		e.Channel = model.Ptr(propChannels[channels[i]%len(propChannels)])
		e.Z = model.Ptr(float64(zs[i]))
		out = append(out, e)
	}
	return out
}

var propOrders = map[string][]model.Axis{
	"tpgcz": model.AllAxes,
	"tzc":   {model.AxisTime, model.AxisZ, model.AxisChannel},
}

func TestProperty_PopOrderIsNonDecreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for name, order := range propOrders {
		for _, dir := range []model.ZDirection{model.ZAscending, model.ZDescending, model.ZAlternate} {
			properties.Property("popped events never go backwards under "+name+" z="+string(dir), prop.ForAll(
				func(times, channels, zs []int) bool {
					s := New(WithAxisOrder(order), WithZDirection(dir), WithChannels(propChannels...))
					for _, e := range buildEvents(times, channels, zs) {
						s.Add(e)
					}
					prev, ok := s.Pop()
					if !ok {
						return true
					}
					for {
						next, ok := s.Pop()
						if !ok {
							return true
						}
						if s.Compare(prev, next) > 0 {
							return false
						}
						prev = next
					}
				},
				gen.SliceOf(gen.IntRange(0, 10)),
				gen.SliceOf(gen.IntRange(0, 3)),
				gen.SliceOf(gen.IntRange(0, 3)),
			))
		}
	}

	properties.TestingRun(t)
}

func TestProperty_CompareIsAntisymmetric(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for name, order := range propOrders {
		for _, dir := range []model.ZDirection{model.ZAscending, model.ZDescending, model.ZAlternate} {
			properties.Property("Compare(a,b) == -Compare(b,a) under "+name+" z="+string(dir), prop.ForAll(
				func(times, channels, zs []int) bool {
					s := New(WithAxisOrder(order), WithZDirection(dir), WithChannels(propChannels...))
					events := buildEvents(times, channels, zs)
					for i := range events {
						for j := range events {
							if s.Compare(events[i], events[j]) != -s.Compare(events[j], events[i]) {
								return false
							}
						}
					}
					return true
				},
				gen.SliceOf(gen.IntRange(0, 4)),
				gen.SliceOf(gen.IntRange(0, 3)),
				gen.SliceOf(gen.IntRange(0, 3)),
			))
		}
	}

	properties.TestingRun(t)
}

func TestProperty_DedupIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("registering every event twice stores each once", prop.ForAll(
		func(times, channels, zs []int) bool {
			events := buildEvents(times, channels, zs)

			once := New()
			for _, e := range events {
				once.Add(e)
			}
			twice := New()
			for _, e := range events {
				twice.Add(e)
			}
			for _, e := range events {
				if twice.Add(e).Added {
					return false
				}
			}
			return once.Len() == twice.Len()
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.SliceOf(gen.IntRange(0, 3)),
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
