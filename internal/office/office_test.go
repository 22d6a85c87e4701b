package office

import (
	"testing"

	"github.com/addis-gov/cas/internal/shared/types"
)

func TestNew(t *testing.T) {
	creator := types.NewID()
	o, err := New(Input{Name: "Bole Subcity Office", Email: "bole@example.gov.et"}, creator)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !o.IsActive {
		t.Error("new offices start active")
	}
	if o.AddedBy != creator {
		t.Error("added_by must record the creator")
	}

	if _, err := New(Input{}, creator); err == nil {
		t.Error("missing name must fail validation")
	}
}

func TestApplyTracksEditor(t *testing.T) {
	creator := types.NewID()
	editor := types.NewID()
	o, _ := New(Input{Name: "Bole Subcity Office"}, creator)

	if err := o.Apply(Input{Name: "Bole Sub-city Office"}, editor); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if o.Name != "Bole Sub-city Office" || o.UpdatedBy != editor {
		t.Errorf("update not applied: %+v", o)
	}
	if o.AddedBy != creator {
		t.Error("added_by must stay the original creator")
	}

	if err := o.Apply(Input{}, editor); err == nil {
		t.Error("clearing the name must fail validation")
	}
}

func TestSetActive(t *testing.T) {
	o, _ := New(Input{Name: "Bole Subcity Office"}, types.NewID())
	editor := types.NewID()

	o.SetActive(false, editor)
	if o.IsActive || o.UpdatedBy != editor {
		t.Errorf("deactivation not recorded: %+v", o)
	}
}
