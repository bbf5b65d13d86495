// Package audit records who did what to which record: stage transitions,
// permission grants, document uploads, denied access attempts. Events can
// go to the database, to a nop sink in tests, or to several sinks at once.
package audit
