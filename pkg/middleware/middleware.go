// Package middleware provides common Gin middleware for PaperQA.
//
// This package includes:
//   - Recovery: Panic recovery with JSON error response
//   - RequestID: Adds a unique ULID request ID to each request
//   - Logger: Structured request logging
//   - CORS: Cross-Origin Resource Sharing support
//
// Middleware are applied at engine construction time so that every
// route group inherits them:
//
//	engine := gin.New()
//	engine.Use(
//	    middleware.Recovery(),
//	    middleware.RequestID(),
//	    middleware.Logger(),
//	    middleware.CORS(),
//	)
package middleware
