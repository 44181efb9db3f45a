//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact stores each session's files on local disk: uploads from
// the user and documents generated during runs.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind distinguishes user uploads from generated documents.
type Kind string

// Artifact kinds.
const (
	KindUploaded  Kind = "uploads"
	KindGenerated Kind = "generated"
)

// Storage errors.
var (
	// ErrNotFound is returned when the named artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for names that would escape the session
	// directory.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Storage is a local-disk artifact store. Layout:
//
//	<root>/<sessionID>/uploads/<fileName>
//	<root>/<sessionID>/generated/<fileName>
type Storage struct {
	root string
}

// NewStorage creates the store rooted at the given directory, creating it if
// needed.
func NewStorage(root string) (*Storage, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Storage{root: root}, nil
}

// Save writes an artifact, replacing any previous file with the same name.
func (s *Storage) Save(sessionID string, kind Kind, fileName string, reader io.Reader) error {
	path, err := s.path(sessionID, kind, fileName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(path)
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Open returns a reader for the named artifact, looking in uploads first and
// then in generated documents.
func (s *Storage) Open(sessionID, fileName string) (io.ReadCloser, Kind, error) {
	for _, kind := range []Kind{KindUploaded, KindGenerated} {
		path, err := s.path(sessionID, kind, fileName)
		if err != nil {
			return nil, "", err
		}
		file, err := os.Open(path)
		if err == nil {
			return file, kind, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("open artifact: %w", err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNotFound, fileName)
}

// List returns the artifact names of one kind for the session, sorted.
func (s *Storage) List(sessionID string, kind Kind) ([]string, error) {
	dir := filepath.Join(s.root, sessionID, string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes one artifact. Deleting a missing artifact is not an error.
func (s *Storage) Delete(sessionID string, kind Kind, fileName string) error {
	path, err := s.path(sessionID, kind, fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// DeleteSession removes the session's entire artifact directory.
func (s *Storage) DeleteSession(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) {
		return ErrInvalidName
	}
	if err := os.RemoveAll(filepath.Join(s.root, sessionID)); err != nil {
		return fmt.Errorf("delete session artifacts: %w", err)
	}
	return nil
}

// path validates the name and builds the artifact's on-disk path.
func (s *Storage) path(sessionID string, kind Kind, fileName string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) {
		return "", ErrInvalidName
	}
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, fileName)
	}
	return filepath.Join(s.root, sessionID, string(kind), fileName), nil
}
