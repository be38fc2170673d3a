// Package catalog enumerates the logical document units the pipeline tracks.
//
// A WorkItem's key derives purely from its logical address (the normalized
// source URL path for fetched pages, the relative Markdown path for documents
// already on disk), never from enumeration order, so recorded progress stays
// valid when the catalog changes shape between runs.
package catalog
