// Package panel serves the device health dashboard as an embedded asset.
//
// The dashboard is a static HTML/JS page that polls the REST API every
// ten seconds and renders a device table, battery and error-rate bar
// charts, status and device filters, a CSV download link and a
// dismissible banner when any device is in error state.
//
// Handler serves these assets with SPA fallback routing: if a requested
// file does not exist, index.html is served.
package panel
