// Package handlers implements the admission control logic for the
// MongoDBExporter resource.
//
// It contains two handlers:
//
//  1. Mutation (MongoDBExporterDefaulter):
//     Intercepts CREATE and UPDATE requests to materialize operational
//     defaults (replicas, port, log level, secret key, scrape interval) into
//     the stored spec. The controller applies the same defaults in-memory,
//     so the system degrades gracefully if the webhook is unavailable.
//
//  2. Validation (MongoDBExporterValidator):
//     Enforces semantic rules the OpenAPI schema cannot express, most
//     importantly the exclusivity of the two connection sources
//     (spec.mongodbURI vs spec.mongodb.secretRef) and the shape of the
//     connection string, hostname and scrape interval.
package handlers
