// Package domain holds the value types shared by every layer: catalog items
// and knowledge base documents, index generations and their artifacts, the
// manifest, engine requests and results, settings and the error kinds the
// transports map to status codes.
//
// It imports the standard library only.
package domain
