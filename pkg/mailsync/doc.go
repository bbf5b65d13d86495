// Package mailsync ingests questionnaire emails from an IMAP mailbox
// into the intake pipeline. A filled questionnaire arrives as a plain
// text body of "key - value" lines with Russian field labels; each new
// message becomes a mother on the primary stage, deduplicated by the
// message id so a rerun of the job never creates twice.
//
// All mailbox state lives in an explicit Session value owned by one
// job run. The job logs out in every exit path.
package mailsync
