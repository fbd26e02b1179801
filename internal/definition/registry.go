package definition

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// snapshot is one immutable generation of the catalogue.
type snapshot struct {
	forms     map[string]model.FormDefinition
	workflows map[string]model.WorkflowDefinition
	fields    map[string]model.FieldDescriptor
	files     int
	checksum  string
}

// Registry is the form-field catalogue. Reads are lock-free; Replace swaps
// the whole snapshot.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []model.DefinitionFile) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace builds a new generation from defs and swaps it in. Fields are
// stamped with the id of their form. Duplicate ids resolve to the last
// definition; Validator reports them.
func (r *Registry) Replace(defs []model.DefinitionFile) {
	s := &snapshot{
		forms:     make(map[string]model.FormDefinition),
		workflows: make(map[string]model.WorkflowDefinition),
		fields:    make(map[string]model.FieldDescriptor),
		files:     len(defs),
	}

	sums := make([]string, 0, len(defs))
	for _, def := range defs {
		sums = append(sums, def.Checksum)

		for _, f := range def.Forms {
			fields := make([]model.FieldDescriptor, len(f.Fields))
			for i, fd := range f.Fields {
				fd.FormID = f.ID
				fields[i] = fd
				s.fields[fd.ID] = fd
			}
			f.Fields = fields
			s.forms[f.ID] = f
		}
		for _, w := range def.Workflows {
			s.workflows[w.ID] = w
		}
	}

	// File order does not change the combined checksum.
	sort.Strings(sums)
	s.checksum = hex.EncodeToString(sha256Sum(strings.Join(sums, ":")))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// GetForm returns the form definition with the given ID.
func (r *Registry) GetForm(formID string) (model.FormDefinition, bool) {
	f, ok := r.current().forms[formID]
	return f, ok
}

// GetField returns the field with the given ID from any form.
func (r *Registry) GetField(fieldID string) (model.FieldDescriptor, bool) {
	f, ok := r.current().fields[fieldID]
	return f, ok
}

// GetWorkflow returns the workflow definition with the given ID.
func (r *Registry) GetWorkflow(workflowID string) (model.WorkflowDefinition, bool) {
	w, ok := r.current().workflows[workflowID]
	return w, ok
}

// AllForms returns all form definitions ordered by ID.
func (r *Registry) AllForms() []model.FormDefinition {
	return sortedByID(r.current().forms, func(f model.FormDefinition) string { return f.ID })
}

// AllWorkflows returns all workflow definitions ordered by ID.
func (r *Registry) AllWorkflows() []model.WorkflowDefinition {
	return sortedByID(r.current().workflows, func(w model.WorkflowDefinition) string { return w.ID })
}

func sortedByID[T any](m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// Loaded reports whether at least one form is registered.
func (r *Registry) Loaded() bool {
	return len(r.current().forms) > 0
}

// Counts returns the number of forms, fields and workflows.
func (r *Registry) Counts() (forms, fields, workflows int) {
	s := r.current()
	return len(s.forms), len(s.fields), len(s.workflows)
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
