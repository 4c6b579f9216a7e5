// Package store persists the data model to the three XML file families
// (spec §4.2): src-<nickname>.xml, map-<mapping>.xml, set-<mapping>.xml.
// Loading and saving is the only place in the module that knows about XML,
// file locking, or on-disk layout; everything else works in terms of
// internal/model values.
package store

import (
	"encoding/xml"
	"time"
)

const schemaVersion = "1"

// sourceFile is the on-disk shape of src-<nickname>.xml.
type sourceFile struct {
	XMLName      xml.Name   `xml:"source"`
	Version      string     `xml:"version,attr"`
	Updated      string     `xml:"updated,attr"`
	Kind         string     `xml:"kind"`
	Nickname     string     `xml:"nickname"`
	Plugin       string     `xml:"plugin"`
	Server       string     `xml:"server"`
	User         string     `xml:"user"`
	Password     string     `xml:"password,omitempty"`
	EPassword    string     `xml:"epassword,omitempty"`
	Module       string     `xml:"module"`
	ModDateField string     `xml:"moddate_field"`
	ModUserField string     `xml:"moduser_field"`
	Attrs        []xmlAttr  `xml:"attr"`
	Filters      []xmlFilter `xml:"filter"`
}

type xmlAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlFilter struct {
	Name  string      `xml:"name,attr"`
	Field string      `xml:"field,attr"`
	Rules []xmlFilterRule `xml:"rule"`
}

type xmlFilterRule struct {
	Pattern string `xml:",chardata"`
}

// mappingFile is the on-disk shape of map-<mapping>.xml.
type mappingFile struct {
	XMLName   xml.Name  `xml:"mapping"`
	Version   string    `xml:"version,attr"`
	Updated   string    `xml:"updated,attr"`
	ID        string    `xml:"id"`
	SCMID     string    `xml:"scm_id"`
	DTSID     string    `xml:"dts_id"`
	SCMFilter string    `xml:"scm_filter,omitempty"`
	DTSFilter string    `xml:"dts_filter,omitempty"`
	Conflict  string    `xml:"conflict"`
	Mirror    []xmlCopy `xml:"mirror>rule"`
	SCMToDTS  []xmlCopy `xml:"scm_to_dts>rule"`
	DTSToSCM  []xmlCopy `xml:"dts_to_scm>rule"`
	Fixes     []xmlFix  `xml:"fixes>rule"`
	Attrs     []xmlAttr `xml:"attr"`
}

type xmlCopy struct {
	SCMField       string        `xml:"scm_field,attr"`
	DTSField       string        `xml:"dts_field,attr"`
	Type           string        `xml:"type,attr"`
	Truncate       bool          `xml:"truncate,attr,omitempty"`
	MirrorConflict string        `xml:"mirror_conflict,attr,omitempty"`
	Values         []xmlCopyPair `xml:"value"`
}

type xmlCopyPair struct {
	V1 string `xml:"v1,attr"`
	V2 string `xml:"v2,attr"`
}

type xmlFix struct {
	DTSField    string `xml:"dts_field,attr"`
	Action      string `xml:"action,attr"`
	Files       bool   `xml:"files,attr,omitempty"`
	Change      bool   `xml:"change,attr,omitempty"`
	Description bool   `xml:"description,attr,omitempty"`
	FixedBy     bool   `xml:"fixed_by,attr,omitempty"`
	FixedDate   bool   `xml:"fixed_date,attr,omitempty"`
}

// settingsFile is the on-disk shape of set-<mapping>.xml. LastUpdate is the
// legacy single-watermark field (spec §6 back-compat note).
type settingsFile struct {
	XMLName       xml.Name `xml:"settings"`
	Version       string   `xml:"version,attr"`
	Updated       string   `xml:"updated,attr"`
	ID            string   `xml:"id"`
	StartingDate  string   `xml:"starting_date"`
	LastUpdate    string   `xml:"last_update,omitempty"`
	LastUpdateSCM string   `xml:"last_update_scm,omitempty"`
	LastUpdateDTS string   `xml:"last_update_dts,omitempty"`
	Force         bool     `xml:"force,omitempty"`
}

const xmlTimeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(xmlTimeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(xmlTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
