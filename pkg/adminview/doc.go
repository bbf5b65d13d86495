// Package adminview is the operational surface of the CRM: one panel
// per pipeline stage, each deciding which records a staff user sees,
// which fields a form shows for a given view mode, and which bulk
// actions apply. Panels never touch permissions directly; every access
// question goes through the perms checker, and every stage change goes
// through the pipeline service.
//
// List access is existence-driven: a panel is visible exactly when the
// user holds a record-level grant on at least one actionable record.
// Superusers are auditors here, not operators, and get no list-level
// shortcut. The ban add panel goes further and is hidden from module
// navigation for everyone.
package adminview
