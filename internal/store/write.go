package store

import (
	"encoding/xml"
	"fmt"
	"os"
)

// writeBackupFirst implements the single-file, backup-first write protocol
// (spec §4.2): copy current to <file>.old if it exists, then write new
// content. Any failure leaves the previous file or its backup intact.
func writeBackupFirst(path string, doc interface{}) error {
	if data, err := os.ReadFile(path); err == nil {
		if werr := os.WriteFile(path+".old", data, 0o644); werr != nil {
			return fmt.Errorf("store: backup %s: %w", path, werr)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("store: stat %s: %w", path, err)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", path, err)
	}
	out = append([]byte(xml.Header), out...)
	out = append(out, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

func readXML(path string, doc interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, doc)
}
