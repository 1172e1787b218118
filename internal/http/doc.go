// Package http provides HTTP handlers and middleware for the training center API.
//
// Every API route requires the `X-Trainer-ID` header forwarded by the upstream gateway;
// `X-Trainer-Role: admin` marks administrators. The router exposes:
//   - POST /groups, GET /groups/{id}, PATCH /groups/{id}/status,
//     GET /groups/{id}/upcoming?count=: group provisioning and the preview of the
//     next pattern slots. Payloads are the `groupRequest` and `groupDTO` types in
//     group_handler.go.
//   - POST /groups/{id}/enrollments, GET /groups/{id}/enrollments: roster management.
//   - POST /sessions, GET /sessions?groupId=&status=&startDate=&endDate=,
//     GET /sessions/{id}, PATCH /sessions/{id}, DELETE /sessions/{id}?permanent=&reason=,
//     POST /sessions/{id}/start, POST /sessions/{id}/end: session scheduling and lifecycle.
//     Responses carry both the stored and the time-derived status.
//   - PUT /sessions/{id}/evaluation, GET /sessions/{id}/evaluation: trainer evaluations.
//   - POST /attendance, GET /attendance/summary?courseId=&studentId=,
//     GET /sessions/{id}/attendance/summary: attendance marking and summaries.
//   - GET /calendar?view=day|week|month&date=YYYY-MM-DD: sessions of a period with
//     group metadata.
//   - GET /stats/groups/{id}, GET /stats/dashboard: attendance rollups. The dashboard
//     is restricted to administrators.
//   - GET /healthz: liveness check, served without a principal.
//
// Errors are rendered as {"error_code","message","errors"}.
package http
