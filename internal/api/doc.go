// Package api implements the HTTP handlers for the curation backend: auth,
// account administration, the category/channel/playlist/video catalog, the
// moderation proposal workflow, and the public mobile feed. All failures
// funnel through WriteError so clients always receive the same envelope.
package api
