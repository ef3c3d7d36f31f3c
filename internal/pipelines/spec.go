package pipelines

import (
	"fmt"
	"strings"
)

// Spec describes one pipeline to launch: a unique name plus the raw graph
// tokens handed to the engine's parser. Immutable once produced.
type Spec struct {
	Name        string
	GraphTokens []string
}

// CLI segment markers.
const (
	pipelineMarker = "--pipeline"
	nameMarker     = "--name"
)

// SplitArgs partitions the raw CLI token stream into application tokens
// (everything before the first --pipeline marker) and one Spec per
// --pipeline segment. Each segment must carry `--name <NAME>` first, with
// at least one graph token after it. Pure function: on error no partial
// specs are returned.
func SplitArgs(args []string) (appArgs []string, specs []Spec, err error) {
	first := -1
	for i, tok := range args {
		if tok == pipelineMarker {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, nil, NewError(ErrCodeMalformedSpec,
			fmt.Sprintf("no %s segment in arguments", pipelineMarker), nil)
	}

	appArgs = args[:first]

	var segments [][]string
	rest := args[first+1:]
	start := 0
	for i, tok := range rest {
		if tok == pipelineMarker {
			segments = append(segments, rest[start:i])
			start = i + 1
		}
	}
	segments = append(segments, rest[start:])

	seen := make(map[string]bool, len(segments))
	specs = make([]Spec, 0, len(segments))
	for i, seg := range segments {
		spec, segErr := parseSegment(i, seg)
		if segErr != nil {
			return nil, nil, segErr
		}
		if seen[spec.Name] {
			return nil, nil, NewError(ErrCodeMalformedSpec,
				fmt.Sprintf("duplicate pipeline name %q", spec.Name), nil)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}

	return appArgs, specs, nil
}

func parseSegment(index int, seg []string) (Spec, error) {
	if len(seg) == 0 || seg[0] != nameMarker {
		return Spec{}, NewError(ErrCodeMalformedSpec,
			fmt.Sprintf("pipeline segment %d must start with %s", index, nameMarker), nil)
	}
	if len(seg) < 2 || seg[1] == "" || strings.HasPrefix(seg[1], "--") {
		return Spec{}, NewError(ErrCodeMalformedSpec,
			fmt.Sprintf("pipeline segment %d is missing a name", index), nil)
	}
	name := seg[1]
	graph := seg[2:]
	if len(graph) == 0 {
		return Spec{}, NewError(ErrCodeMalformedSpec,
			fmt.Sprintf("pipeline %q has no graph description", name), nil)
	}
	return Spec{Name: name, GraphTokens: graph}, nil
}
