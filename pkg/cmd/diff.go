package cmd

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sort"
)

// RemoteCommand is a command as the platform's catalog reports it.
type RemoteCommand struct {
	ID string
	Definition
}

// Update pairs a local descriptor with the remote command it replaces.
type Update struct {
	Local  Descriptor
	Remote RemoteCommand
}

// Changes is the result of comparing local descriptors with a remote snapshot.
// The three sets are disjoint: no local descriptor or remote entry appears in
// more than one of them.
type Changes struct {
	ToAdd    []Descriptor
	ToRemove []RemoteCommand
	ToUpdate []Update
}

// Empty reports whether applying c would change nothing.
func (c Changes) Empty() bool {
	return len(c.ToAdd) == 0 && len(c.ToRemove) == 0 && len(c.ToUpdate) == 0
}

// Len returns the number of remote calls needed to apply c.
func (c Changes) Len() int { return len(c.ToAdd) + len(c.ToRemove) + len(c.ToUpdate) }

// Diff computes what must happen remotely for the catalog to match local:
// local commands missing remotely are added, remote commands with no local
// counterpart are removed, and same-named commands whose signatures differ are
// updated. A remote name reported twice keeps its first entry; the extra ones
// are removed. Diff has no side effects.
func Diff(local []Descriptor, remote []RemoteCommand) Changes {
	var out Changes

	remoteByName := make(map[string]RemoteCommand, len(remote))
	for _, rc := range remote {
		if _, dup := remoteByName[rc.Name]; dup {
			out.ToRemove = append(out.ToRemove, rc)
			continue
		}
		remoteByName[rc.Name] = rc
	}

	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
		rc, ok := remoteByName[d.Name]
		switch {
		case !ok:
			out.ToAdd = append(out.ToAdd, d)
		case Signature(rc.Definition) != d.Signature():
			out.ToUpdate = append(out.ToUpdate, Update{Local: d, Remote: rc})
		}
	}

	for _, rc := range remote {
		if _, ok := localNames[rc.Name]; ok {
			continue
		}
		if kept, ok := remoteByName[rc.Name]; ok && kept.ID == rc.ID {
			out.ToRemove = append(out.ToRemove, rc)
		}
	}
	return out
}

// AsRemote renders descriptors the way a catalog would report them. A catalog
// built this way always diffs empty against the same descriptors.
func AsRemote(ds []Descriptor) []RemoteCommand {
	out := make([]RemoteCommand, len(ds))
	for i, d := range ds {
		out[i] = RemoteCommand{ID: fmt.Sprintf("local-%d", i), Definition: d.Definition.clone()}
	}
	return out
}

// Signature returns a deterministic SHA-1 of a definition's stable fields.
// Option order does not matter; choice order does.
func Signature(def Definition) string {
	stable := map[string]any{
		"name":        def.Name,
		"description": def.Description,
	}
	if len(def.Options) > 0 {
		stable["options"] = normalizeOptions(def.Options)
	}
	data, _ := json.Marshal(stable)
	sum := sha1.Sum(data)
	return fmt.Sprintf("%x", sum)
}

func normalizeOptions(opts []Option) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        int(o.Type),
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": normalizeValue(ch.Value)}
			}
			entry["choices"] = choices
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}

// normalizeValue folds numeric choice values to float64 so an int set locally
// and a float decoded from the platform's JSON hash the same.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
