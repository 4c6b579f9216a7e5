// Package plugin defines the uniform adapter contract every SCM/DTS backend
// implements (spec §4.1), modeled as a required-interface / optional-
// capability pair rather than a dynamically resolved C symbol table (spec
// §9, "Plugin table as capability interface"). Optional operations are
// probed by type assertion at the point of use; the result is not cached.
package plugin

import (
	"context"
	"time"

	"dtg-replicator/internal/model"
)

// Record is a mutable field bag for one remote record. The engine never
// assumes a field's Go type beyond string; interpretation is per-rule
// (spec §9, "Dynamic typing of field values").
type Record interface {
	ID() string
	Get(field string) string
	Set(field, value string)
	// Dirty reports whether Set has been called since the record was loaded
	// or last saved.
	Dirty() bool
}

// FixDesc describes one SCM change/fix, as returned by DescribeFix (spec §4.5).
type FixDesc struct {
	Change string
	User   string
	Stamp  time.Time
	Desc   string
	Files  []string
}

// Project is a connected handle to one remote project/container.
type Project interface {
	Name() string
	ListFields(ctx context.Context) ([]model.FieldDesc, error)
	// ListChangedDefects lists candidate ids changed since `since`, in
	// modDateField order. max<1 means unlimited. Plugins that cannot filter
	// server-side may return a superset; the engine re-filters by stamp.
	ListChangedDefects(ctx context.Context, max int, since time.Time, modDateField, modByField, excludeUser string) ([]string, error)
	GetDefect(ctx context.Context, id string) (Record, error)
	NewDefect(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) (string, error)
}

// Handle is a connected session to one Source's server.
type Handle interface {
	ServerVersion(ctx context.Context) (string, error)
	ServerWarnings(ctx context.Context) ([]string, error)
	ServerDate(ctx context.Context) (time.Time, error)
	ListProjects(ctx context.Context) ([]string, error)
	GetProject(ctx context.Context, name string) (Project, error)
	Close() error
}

// Adapter is the timeless, connection-independent half of the plugin
// contract: naming, version, and the two date-conversion primitives
// internal/convert relies on for CopyDate rules.
type Adapter interface {
	Name() string
	ModuleVersion() string
	ExtractDate(s string) (time.Time, bool)
	FormatDate(t time.Time) string
	Connect(ctx context.Context, server, user, pass string, attrs []model.Attr) (Handle, error)
}

// --- Optional capabilities (spec §4.1) -------------------------------------

// UTF8Aware is probed to classify UTF-8 compatibility (spec §4.3). Absence
// is treated the same as returning -1 (unknown/plugin too old).
type UTF8Aware interface {
	AcceptUTF8(ctx context.Context, h Handle) (int, error)
}

// OfflineAware lets a plugin report how long the engine should back off
// before retrying a failed connection; positive=seconds, 0=online,
// -1=defer to the mapping's WaitDuration.
type OfflineAware interface {
	ServerOffline(ctx context.Context, h Handle) (int, error)
}

// MessageSource lets a plugin inject one log message per call; level>=4
// means no message (spec §4.1).
type MessageSource interface {
	Message(ctx context.Context, h Handle) (level int, message string, ok bool)
}

// AttrDeclarer declares plugin-specific configuration attributes. The spec
// requires ListAttrs/ValidateAttr/FreeAttribute to all be present together;
// in Go that collapses to this one interface being implemented or not.
type AttrDeclarer interface {
	ListAttrs() []AttrSpec
	ValidateAttr(name, value string) error
}

// AttrSpec describes one plugin-declared configuration attribute.
type AttrSpec struct {
	Name     string
	Label    string
	Desc     string
	Default  string
	Required bool
}

// ReferencedFieldsHinter lets the engine tell a plugin which fields it will
// touch, as a query-planning hint.
type ReferencedFieldsHinter interface {
	SetReferencedFields(ctx context.Context, p Project, names []string) error
}

// SegmentFilterAdvertiser lets a plugin restrict server-side queries to a
// materialized FilterSet (spec §4.3).
type SegmentFilterAdvertiser interface {
	SetSegmentFilters(ctx context.Context, p Project, filters []model.FieldDesc) error
}

// FixFinder is the SCM-only trio (find_defects/list_fixes/describe_fix).
// Simultaneous presence identifies the Perforce-class SCM plugin (spec
// §4.1/§6), which the loader moves to the head of the plugin list.
type FixFinder interface {
	FindDefects(ctx context.Context, p Project, max int, query string) ([]string, error)
	ListFixes(ctx context.Context, p Project, id string) ([]string, error)
	DescribeFix(ctx context.Context, p Project, fix string) (FixDesc, error)
}

// IsPerforceClass reports whether adapter implements the FixFinder trio,
// i.e. is recognized as the Perforce-class SCM plugin (spec §4.1).
func IsPerforceClass(a Adapter) bool {
	_, ok := a.(FixFinder)
	return ok
}
