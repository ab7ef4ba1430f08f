// Package archive reads a Stellaris save file and returns its two
// Clausewitz-text members, meta and gamestate (spec.md §6's "archive
// reader" collaborator). Grounded on
// original_source/backend/src/campaign_select/unzipper.rs (the
// get_zipped_content contract: a path in, (meta, gamestate) text out)
// and original_source/backend/src/file_reader for the fact that saves
// aren't always zipped.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
)

// MetaFileName and GamestateFileName are the two zip members every
// Stellaris save contains.
const (
	MetaFileName      = "meta"
	GamestateFileName = "gamestate"
)

// zipMagic is the four-byte local-file-header signature every zip
// archive starts with; Stellaris's "ironman" save mode instead writes
// gamestate as plain, uncompressed Clausewitz text with no wrapper.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Open reads the save file at path and returns its meta and gamestate
// member contents. A zip-wrapped save yields both members from the
// archive; a plain-text ("ironman") save has no meta member and
// returns its entire content as gamestate with an empty meta.
func Open(path string) (meta, gamestate []byte, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	return OpenBytes(content)
}

// OpenBytes is Open over an already-read save file, useful for
// callers that already hold the bytes (e.g. a watcher that just
// stat'd the file to size-check it).
func OpenBytes(content []byte) (meta, gamestate []byte, err error) {
	if isZip(content) {
		return readZip(content)
	}
	return nil, content, nil
}

func isZip(content []byte) bool {
	return bytes.HasPrefix(content, zipMagic)
}

func readZip(content []byte) (meta, gamestate []byte, err error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, nil, fmt.Errorf("archive: open zip: %w", err)
	}

	meta, err = readMember(r, MetaFileName)
	if err != nil {
		return nil, nil, err
	}
	gamestate, err = readMember(r, GamestateFileName)
	if err != nil {
		return nil, nil, err
	}
	return meta, gamestate, nil
}

func readMember(r *zip.Reader, name string) ([]byte, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("archive: open member %q: %w", name, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("archive: read member %q: %w", name, err)
	}
	return content, nil
}
