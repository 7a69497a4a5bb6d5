// Package visit implements the worker's interactive actions: finding the
// nearby store, checking in and out, and working through a workflow's tasks.
//
// Every backend write is attempted online first. When the backend cannot be
// reached the write is parked in the offline queue and the action succeeds
// locally; a response from the backend, even an error, is returned to the
// worker unchanged. Photo uploads are the exception: any upload failure queues
// the photo and records its data URL in place of the uploaded URL.
package visit
