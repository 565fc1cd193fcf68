// Package delivery hands finished videos to clients.
//
// A succeeded job's muxed video is moved out of the job's work directory into
// the outbox at <delivery_dir>/<job_id>/<name>. Clients download it through a
// signed, expiring link minted on each status poll. Tokens are HMAC-SHA256
// signatures over the job id, file name and expiry, so links cannot be forged
// or extended without the daemon's signing secret.
package delivery
