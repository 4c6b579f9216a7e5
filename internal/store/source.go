package store

import (
	"fmt"
	"path/filepath"
	"time"

	"dtg-replicator/internal/model"
	"dtg-replicator/internal/secrets"
)

// LoadSource reads src-<nickname>.xml from dir.
func LoadSource(dir, nickname string) (*model.Source, error) {
	path := sourcePath(dir, nickname)
	var f sourceFile
	if err := readXML(path, &f); err != nil {
		return nil, fmt.Errorf("store: load source %s: %w", nickname, err)
	}
	return sourceFromXML(&f)
}

func sourcePath(dir, nickname string) string {
	return filepath.Join(dir, "src-"+nickname+".xml")
}

func sourceFromXML(f *sourceFile) (*model.Source, error) {
	attrMap := map[string]string{}
	attrs := make([]model.Attr, 0, len(f.Attrs))
	for _, a := range f.Attrs {
		attrs = append(attrs, model.Attr{Name: a.Name, Value: a.Value})
		attrMap[a.Name] = a.Value
	}
	if f.Password != "" {
		attrMap["password"] = f.Password
	}
	if f.EPassword != "" {
		attrMap["epassword"] = f.EPassword
	}
	pass, err := secrets.ResolvePassword(f.Nickname, f.Server, attrMap)
	if err != nil {
		return nil, fmt.Errorf("resolve password for %s: %w", f.Nickname, err)
	}

	src := &model.Source{
		Kind:         model.SourceKind(f.Kind),
		Nickname:     f.Nickname,
		Plugin:       f.Plugin,
		Server:       f.Server,
		User:         f.User,
		Password:     pass,
		Module:       f.Module,
		ModDateField: f.ModDateField,
		ModUserField: f.ModUserField,
		Attrs:        attrs,
		AcceptUTF8:   -1,
	}
	for _, ff := range f.Filters {
		fs := &model.FilterSet{Name: ff.Name, Field: ff.Field}
		for _, r := range ff.Rules {
			fs.Rules = append(fs.Rules, model.FilterRule{Field: ff.Field, Pattern: r.Pattern})
		}
		src.Filters = append(src.Filters, fs)
	}
	return src, nil
}

// SaveSource writes src-<nickname>.xml under dir, backup-first, storing the
// password obfuscated as epassword, or in clear as password when Obfuscate
// leaves it unchanged (empty or longer than 64 characters) (spec §4.2).
func SaveSource(dir string, src *model.Source, now func() time.Time) error {
	path := sourcePath(dir, src.Nickname)
	f := &sourceFile{
		Version:      schemaVersion,
		Updated:      formatTime(now()),
		Kind:         string(src.Kind),
		Nickname:     src.Nickname,
		Plugin:       src.Plugin,
		Server:       src.Server,
		User:         src.User,
		Module:       src.Module,
		ModDateField: src.ModDateField,
		ModUserField: src.ModUserField,
	}
	if enc := secrets.Obfuscate(src.Nickname, src.Server, src.Password); enc != src.Password {
		f.EPassword = enc
	} else {
		f.Password = src.Password
	}
	for _, a := range src.Attrs {
		if a.Name == "password" || a.Name == "epassword" {
			continue
		}
		f.Attrs = append(f.Attrs, xmlAttr{Name: a.Name, Value: a.Value})
	}
	for _, fs := range src.Filters {
		xf := xmlFilter{Name: fs.Name, Field: fs.Field}
		for _, r := range fs.Rules {
			xf.Rules = append(xf.Rules, xmlFilterRule{Pattern: r.Pattern})
		}
		f.Filters = append(f.Filters, xf)
	}
	return writeBackupFirst(path, f)
}
