package actionlog

import "time"

// SortOrder defines how results should be ordered when listing records.
type SortOrder int

const (
	// SortByCreatedDesc orders records by CreatedAt descending (most recent first).
	SortByCreatedDesc SortOrder = iota
	// SortByCreatedAsc orders records by CreatedAt ascending (oldest first).
	SortByCreatedAsc
)

// ListOptions controls how records are selected when querying the store.
type ListOptions struct {
	Limit      int
	Triggers   []Trigger
	Actions    []string
	OK         *bool
	CreatedGTE int64
	Order      SortOrder
}

// MaxListLimit bounds a single listing so audit queries can page through
// large windows without letting one request pull the whole table.
const MaxListLimit = 1000

// applyDefaults sanitizes the options and fills in default values.
func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Order != SortByCreatedAsc {
		opts.Order = SortByCreatedDesc
	}
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of records returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithTriggers filters records by trigger source.
func WithTriggers(triggers ...Trigger) ListOption {
	return func(opts *ListOptions) {
		opts.Triggers = append(opts.Triggers, triggers...)
	}
}

// WithActions filters records by action type.
func WithActions(actions ...string) ListOption {
	return func(opts *ListOptions) {
		opts.Actions = append(opts.Actions, actions...)
	}
}

// WithOutcome filters records by success flag.
func WithOutcome(ok bool) ListOption {
	return func(opts *ListOptions) {
		opts.OK = &ok
	}
}

// WithCreatedSince keeps records created at or after the given time.
func WithCreatedSince(since time.Time) ListOption {
	return func(opts *ListOptions) {
		opts.CreatedGTE = since.Unix()
	}
}

// WithOrder selects the sort order.
func WithOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

// BuildListOptions folds the option funcs into a ListOptions value.
func BuildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func matchesFilters(record *Record, opts ListOptions) bool {
	if len(opts.Triggers) > 0 {
		matched := false
		for _, trigger := range opts.Triggers {
			if record.Trigger == trigger {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(opts.Actions) > 0 {
		matched := false
		for _, action := range opts.Actions {
			if record.ActionType == action {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.OK != nil && record.OK != *opts.OK {
		return false
	}
	if opts.CreatedGTE > 0 && record.CreatedAt < opts.CreatedGTE {
		return false
	}
	return true
}
