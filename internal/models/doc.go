// Package models defines the domain entities shared by the credential store, the authorization listener and the upload
// queue.
//
// The package contains two categories of types:
//
// 1. Value types passed between components
//   - [ChannelID] : (category, channel-name) identity; every other record is keyed by it
//   - [ClientSecret] : the application credential picked by the user, "installed" or "web" flavoured
//   - [CredentialRecord] : persisted access/refresh token pair, expiry and granted scopes
//   - [UploadPacket] : the raw job packet produced by the UI layer
//   - [UploadJob] : one queued video with its absolute UTC publish instant and progress
//
// 2. Persistent Entities
//   - [UploadRecord] : ledger row written when a job reaches a terminal state
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps, validation, and soft delete
// support. The [Repository] interface defines standard CRUD operations for database access.
package models
