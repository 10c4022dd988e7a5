package record

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Delete removes the record. For a type with the soft-delete policy the
// deleted-at column is stamped and the row kept; otherwise the row is
// removed from the store. Deleting a record that was never stored fails
// with types.ErrNotFound.
func (r *Record) Delete(ctx context.Context) error {
	if r.typ.SoftDelete == nil {
		return r.ForceDelete(ctx)
	}
	if !r.exists {
		return r.notStored("delete")
	}
	now := clock()
	if err := r.stamp(r.typ.SoftDelete.Column, now); err != nil {
		return err
	}
	if ts := r.typ.Timestamps; ts != nil {
		if err := r.stamp(ts.Updated, now); err != nil {
			return err
		}
	}
	return r.persist(ctx)
}

// ForceDelete removes the row from the store even when the type uses soft
// delete. The record no longer exists in the store afterwards; saving it
// again inserts a new row.
func (r *Record) ForceDelete(ctx context.Context) error {
	if !r.exists {
		return r.notStored("delete")
	}
	store, err := r.reg.Adapter(r.typ.Name)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, r.typ.Table, r.keys); err != nil {
		return fmt.Errorf("deleting %s: %w", r.typ.Name, err)
	}
	r.exists = false
	r.keys = nil
	r.dirty = len(r.values) > 0
	return nil
}

// Restore clears the deleted-at column of a soft-deleted record and saves
// it. It is a no-op for a record that is not trashed.
func (r *Record) Restore(ctx context.Context) error {
	sd := r.typ.SoftDelete
	if sd == nil {
		return fmt.Errorf("%w: %s does not use soft delete", types.ErrConfiguration, r.typ.Name)
	}
	if !r.Trashed() {
		return nil
	}
	if !r.exists {
		return r.notStored("restore")
	}
	r.values[sd.Column] = nil
	if ts := r.typ.Timestamps; ts != nil {
		if err := r.stamp(ts.Updated, clock()); err != nil {
			return err
		}
	}
	return r.persist(ctx)
}

// Trashed reports whether the record has been soft-deleted.
func (r *Record) Trashed() bool {
	sd := r.typ.SoftDelete
	if sd == nil {
		return false
	}
	v := r.values[sd.Column]
	return v != nil && v != ""
}

func (r *Record) stamp(column string, now time.Time) error {
	var format, zone string
	if ts := r.typ.Timestamps; ts != nil {
		format, zone = ts.Format, ts.TimeZone
	} else {
		format, zone = schema.DefaultTimestampFormat, schema.DefaultTimeZone
	}
	s, err := formatTimestamp(now, format, zone)
	if err != nil {
		return err
	}
	r.values[column] = s
	r.dirty = true
	return nil
}

func (r *Record) notStored(op string) error {
	return fmt.Errorf("%w: cannot %s %s that is not stored", types.ErrNotFound, op, r.typ.Name)
}
