// Package audit records tenant-scoped audit events.
//
// Events carry the acting tenant, the action performed, and the outcome.
// The tenant ID is extracted from the request context automatically, so
// handlers only name the action:
//
//	auditor, err := audit.NewLogger(audit.NewMemoryStorage())
//	if err != nil {
//		log.Fatal(err)
//	}
//	auditor.Log(ctx, "project.create",
//		audit.WithResource("project", projectID),
//		audit.WithActor("user-123"),
//	)
//
// Audit failures never propagate to the audited operation. Storage
// errors are reported to the application logger and the request
// continues.
package audit
