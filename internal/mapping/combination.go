package mapping

import (
	"time"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// ReferenceFields returns the cross-reference fields of target that point at
// sourceFormID, in form order.
func ReferenceFields(target *model.FormDefinition, sourceFormID string) []model.FieldDescriptor {
	var out []model.FieldDescriptor
	for _, f := range target.Fields {
		if c, ok := compat.ClassOf(f.Type); !ok || c != compat.ClassReference {
			continue
		}
		ref, ok := fieldconfig.Decode(f).(model.CrossReferenceConfig)
		if ok && ref.TargetFormID == sourceFormID {
			out = append(out, f)
		}
	}
	return out
}

// Combination describes how create_combination_records builds one record per
// pair of left and right records.
type Combination struct {
	TargetFormID string
	// LeftReference and RightReference are the target fields that link the
	// new record to each side. Either may be empty.
	LeftReference  model.FieldDescriptor
	RightReference model.FieldDescriptor
	LeftMappings   []model.FieldMapping
	RightMappings  []model.FieldMapping
	CreatedBy      string
}

// Combine returns one draft record per (left, right) pair, left-major. Right
// mapped values overwrite left ones for the same target field; reference
// fields are written last. Drafts carry no id.
func Combine(c Combination, left, right []model.Record, now time.Time) []model.Record {
	out := make([]model.Record, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			data := Apply(c.LeftMappings, l.Data)
			for k, v := range Apply(c.RightMappings, r.Data) {
				data[k] = v
			}
			link(data, c.LeftReference, l.ID)
			link(data, c.RightReference, r.ID)
			out = append(out, model.Record{
				FormID:    c.TargetFormID,
				Data:      data,
				CreatedBy: c.CreatedBy,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}
	return out
}

func link(data map[string]any, ref model.FieldDescriptor, recordID string) {
	if ref.ID == "" {
		return
	}
	if cfg, ok := fieldconfig.Decode(ref).(model.CrossReferenceConfig); ok && cfg.Multiple {
		data[ref.ID] = []string{recordID}
		return
	}
	data[ref.ID] = recordID
}
