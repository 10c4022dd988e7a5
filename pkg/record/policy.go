package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
)

// clock returns the current time. Tests replace it.
var clock = time.Now

// persistPolicy is a capability a record type opts into. Policies run in
// order after validation and before the write.
type persistPolicy interface {
	beforePersist(r *Record, now time.Time) error
}

// policiesFor returns the policies enabled for rt.
func policiesFor(rt *schema.RecordType) []persistPolicy {
	var ps []persistPolicy
	if rt.IDStrategy == schema.IDUUID {
		ps = append(ps, uuidPolicy{column: rt.PrimaryKeys[0]})
	}
	if rt.Timestamps != nil {
		ps = append(ps, timestampPolicy{spec: *rt.Timestamps})
	}
	return ps
}

// uuidPolicy fills an empty primary key with a UUID v7 before the first
// insert.
type uuidPolicy struct {
	column string
}

func (p uuidPolicy) beforePersist(r *Record, _ time.Time) error {
	if r.exists {
		return nil
	}
	if v := r.values[p.column]; v != nil && v != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating id for %s: %w", r.typ.Name, err)
	}
	r.values[p.column] = id.String()
	return nil
}

// timestampPolicy stamps the updated column on every changed save and the
// created column on the first insert.
type timestampPolicy struct {
	spec schema.TimestampSpec
}

func (p timestampPolicy) beforePersist(r *Record, now time.Time) error {
	if !r.dirty {
		return nil
	}
	stamp, err := formatTimestamp(now, p.spec.Format, p.spec.TimeZone)
	if err != nil {
		return err
	}
	r.values[p.spec.Updated] = stamp
	if !r.exists {
		r.values[p.spec.Created] = stamp
	}
	return nil
}

func formatTimestamp(now time.Time, layout, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("loading time zone %q: %w", zone, err)
	}
	return now.In(loc).Format(layout), nil
}
