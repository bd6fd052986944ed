// Package models defines domain entities and persistence interfaces for the plexlist playlist importer.
//
// The package contains two categories of types:
//
// 1. Value types passed between the pipeline stages:
//   - [TrackRecord] : One normalized CSV row (artist, album, title, source line)
//   - [Candidate] : A library track returned by a catalog search
//   - [MatchResult] : The matcher's verdict for one [TrackRecord]
//   - [ReportEntry] : The per-row audit line derived from a [MatchResult]
//   - [SyncJob] : A snapshot of an import job's progress
//   - [WriteOutcome] : What the playlist write actually changed
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [SyncRun] : A finished or running import, kept for history and auditing
//
// Persistent entities implement [Entity]; IDs and sequence numbers are assigned by the repository.
// [Repository] is the CRUD contract the repositories package implements for each entity.
package models
