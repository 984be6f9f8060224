package domain

import "errors"

var (
	// ErrFetch covers network and HTTP status failures while reading the feed.
	ErrFetch = errors.New("feed fetch failed")
	// ErrParse is returned when the feed payload cannot be decoded.
	ErrParse = errors.New("feed parse failed")
	// ErrDispatch is returned when the notification sink rejects or misses a batch.
	ErrDispatch = errors.New("notification dispatch failed")
	// ErrStorage wraps persistence failures that abort a tick.
	ErrStorage = errors.New("storage failure")
	// ErrBusy is returned when a tick is requested while another one is running.
	ErrBusy = errors.New("tick already running")
	// ErrNotFound is returned for lookups of unknown records.
	ErrNotFound = errors.New("not found")
)
