// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for the orders, payments, cart snapshot,
// and webhook event tables. Applied at startup.
//
//go:embed migrations/001_schema.sql
var Schema string
