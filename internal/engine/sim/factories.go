package sim

import (
	"time"

	"github.com/smazurov/pipemux/internal/engine"
)

// factorySpec describes one element type the sim engine can realize.
type factorySpec struct {
	// live sources contribute their base latency to the negotiated
	// pipeline minimum.
	live    bool
	latency time.Duration
	props   map[string]engine.PropSpec
}

func prop(name string, kind engine.PropKind, def any) engine.PropSpec {
	return engine.PropSpec{Name: name, Kind: kind, Writable: true, Default: def}
}

func roProp(name string, kind engine.PropKind, def any) engine.PropSpec {
	return engine.PropSpec{Name: name, Kind: kind, Writable: false, Default: def}
}

// Factory catalog. Loosely modeled on the gst-launch element set the tool
// is typically driven with; enough surface for queue threshold tuning,
// inter-pipeline links and overlay/property mutation at runtime.
var factories = map[string]factorySpec{
	"videotestsrc": {
		live:    true,
		latency: 33 * time.Millisecond,
		props: map[string]engine.PropSpec{
			"pattern":     prop("pattern", engine.KindString, "smpte"),
			"is-live":     prop("is-live", engine.KindBool, true),
			"num-buffers": prop("num-buffers", engine.KindInt, int64(-1)),
		},
	},
	"audiotestsrc": {
		live:    true,
		latency: 20 * time.Millisecond,
		props: map[string]engine.PropSpec{
			"wave":        prop("wave", engine.KindString, "sine"),
			"is-live":     prop("is-live", engine.KindBool, true),
			"num-buffers": prop("num-buffers", engine.KindInt, int64(-1)),
		},
	},
	"queue": {
		props: map[string]engine.PropSpec{
			"min-threshold-time":    prop("min-threshold-time", engine.KindNanoseconds, time.Duration(0)),
			"max-size-time":         prop("max-size-time", engine.KindNanoseconds, time.Second),
			"max-size-buffers":      prop("max-size-buffers", engine.KindUint, uint64(200)),
			"max-size-bytes":        prop("max-size-bytes", engine.KindUint, uint64(10485760)),
			"leaky":                 prop("leaky", engine.KindString, "no"),
			"current-level-buffers": roProp("current-level-buffers", engine.KindUint, uint64(0)),
		},
	},
	"identity": {
		props: map[string]engine.PropSpec{
			"sync":   prop("sync", engine.KindBool, false),
			"silent": prop("silent", engine.KindBool, true),
		},
	},
	"capsfilter": {
		props: map[string]engine.PropSpec{
			"caps": prop("caps", engine.KindString, ""),
		},
	},
	"videoscale": {
		props: map[string]engine.PropSpec{
			"method": prop("method", engine.KindString, "bilinear"),
		},
	},
	"textoverlay": {
		props: map[string]engine.PropSpec{
			"text":      prop("text", engine.KindString, ""),
			"font-desc": prop("font-desc", engine.KindString, "Sans 12"),
		},
	},
	"x264enc": {
		props: map[string]engine.PropSpec{
			"bitrate":     prop("bitrate", engine.KindUint, uint64(2048)),
			"tune":        prop("tune", engine.KindString, ""),
			"key-int-max": prop("key-int-max", engine.KindUint, uint64(0)),
		},
	},
	"fakesink": {
		props: map[string]engine.PropSpec{
			"sync":   prop("sync", engine.KindBool, true),
			"silent": prop("silent", engine.KindBool, true),
		},
	},
	"autovideosink": {
		props: map[string]engine.PropSpec{
			"sync": prop("sync", engine.KindBool, true),
		},
	},
	// Inter-pipeline link pair. Buffers cross the boundary once producer
	// and consumer share a producer-name; latency negotiation does not.
	"intersink": {
		props: map[string]engine.PropSpec{
			"producer-name": prop("producer-name", engine.KindString, ""),
		},
	},
	"intersrc": {
		live: true,
		props: map[string]engine.PropSpec{
			"producer-name": prop("producer-name", engine.KindString, ""),
		},
	},
}
