package cmd

import "testing"

func def(name, desc string, opts ...Option) Descriptor {
	return Descriptor{
		Definition: Definition{Name: name, Description: desc, Options: opts},
		Handler:    reply(name),
	}
}

func TestDiff_AgainstItselfIsEmpty(t *testing.T) {
	reg := NewRegistry()
	for _, d := range []Descriptor{
		def("hello", "Replies with Hello!"),
		def("echo", "Echo text",
			Option{Name: "text", Description: "what to say", Type: OptionString, Required: true},
			Option{Name: "times", Description: "how often", Type: OptionInteger,
				Choices: []Choice{{Name: "once", Value: 1}, {Name: "twice", Value: 2}}},
		),
	} {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	changes := reg.Diff(Global(), AsRemote(reg.Descriptors(Global())))
	if !changes.Empty() {
		t.Errorf("expected empty diff, got %+v", changes)
	}
}

func TestDiff_AddRemoveUpdate(t *testing.T) {
	local := []Descriptor{
		def("hello", "Replies with Hello!"),
		def("sync", "Sync the command tree"),
		def("whatsup", "Replies to whatsup"),
	}
	remote := []RemoteCommand{
		{ID: "1", Definition: Definition{Name: "hello", Description: "Replies with Hello!"}},
		{ID: "2", Definition: Definition{Name: "sync", Description: "old description"}},
		{ID: "3", Definition: Definition{Name: "legacy", Description: "gone"}},
	}

	changes := Diff(local, remote)

	if len(changes.ToAdd) != 1 || changes.ToAdd[0].Name != "whatsup" {
		t.Errorf("expected whatsup to be added, got %+v", changes.ToAdd)
	}
	if len(changes.ToRemove) != 1 || changes.ToRemove[0].ID != "3" {
		t.Errorf("expected legacy to be removed, got %+v", changes.ToRemove)
	}
	if len(changes.ToUpdate) != 1 || changes.ToUpdate[0].Remote.ID != "2" {
		t.Errorf("expected sync to be updated, got %+v", changes.ToUpdate)
	}
	if changes.Len() != 3 {
		t.Errorf("expected 3 changes, got %d", changes.Len())
	}
}

func TestDiff_DuplicateRemoteNames(t *testing.T) {
	local := []Descriptor{def("hello", "Replies with Hello!")}
	remote := []RemoteCommand{
		{ID: "1", Definition: Definition{Name: "hello", Description: "Replies with Hello!"}},
		{ID: "2", Definition: Definition{Name: "hello", Description: "Replies with Hello!"}},
		{ID: "3", Definition: Definition{Name: "old", Description: "x"}},
		{ID: "4", Definition: Definition{Name: "old", Description: "x"}},
	}

	changes := Diff(local, remote)
	if len(changes.ToAdd) != 0 || len(changes.ToUpdate) != 0 {
		t.Errorf("unexpected add/update: %+v", changes)
	}
	ids := map[string]bool{}
	for _, rc := range changes.ToRemove {
		if ids[rc.ID] {
			t.Errorf("remote %s listed twice", rc.ID)
		}
		ids[rc.ID] = true
	}
	if len(ids) != 3 || ids["1"] {
		t.Errorf("expected ids 2, 3, 4 removed, got %v", ids)
	}
}

func TestDiff_IsPure(t *testing.T) {
	local := []Descriptor{def("hello", "a")}
	remote := []RemoteCommand{{ID: "1", Definition: Definition{Name: "hello", Description: "b"}}}

	first := Diff(local, remote)
	second := Diff(local, remote)
	if first.Len() != second.Len() || local[0].Description != "a" || remote[0].Description != "b" {
		t.Error("diff must not mutate its inputs or depend on hidden state")
	}
}

func TestSignature(t *testing.T) {
	a := Definition{Name: "x", Description: "d", Options: []Option{
		{Name: "b", Type: OptionString},
		{Name: "a", Type: OptionInteger, Choices: []Choice{{Name: "one", Value: 1}}},
	}}
	b := Definition{Name: "x", Description: "d", Options: []Option{
		{Name: "a", Type: OptionInteger, Choices: []Choice{{Name: "one", Value: float64(1)}}},
		{Name: "b", Type: OptionString},
	}}
	if Signature(a) != Signature(b) {
		t.Error("option order and numeric width must not change the signature")
	}

	c := b
	c.Options = append([]Option(nil), b.Options...)
	c.Options[1].Required = true
	if Signature(b) == Signature(c) {
		t.Error("required flag must change the signature")
	}

	d := Definition{Name: "x", Description: "other"}
	if Signature(d) == Signature(Definition{Name: "x", Description: "d"}) {
		t.Error("description must change the signature")
	}
}
