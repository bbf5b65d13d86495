// Package pipeline moves mothers between the intake stages: primary,
// first visit, ban and trash. Every transition runs in one database
// transaction that finishes the current stage record, opens the next
// one and hands the mother to a manager working that stage. Stage
// history is append-only; nothing is deleted on the way through.
package pipeline
