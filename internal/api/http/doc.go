/*
Package http exposes the registry over HTTP with gin.

Routes:

	GET  /                                      service banner
	GET  /health                                liveness
	GET  /openapi.yaml                          API document
	GET  /packages                              list packages
	POST /packages                              publish (multipart: meta + tarball)
	GET  /packages/:name                        one package
	GET  /packages/:name/:version               one version
	GET  /packages/:name/:version/dist/tarball  tarball bytes

Every JSON body is a JSend envelope:

	{"status": "success", "data": ...}
	{"status": "fail", "data": {"message": "..."}}   4xx
	{"status": "error", "message": "..."}            5xx

Validation failures map to 400, unknown packages or versions to 404 and
storage faults to 500 with a generic message. Oversized uploads get 413.
*/
package http
