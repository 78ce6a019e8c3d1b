// Package cron parses the 5-field cron expressions used for the recurring
// inventory schedule and computes the next matching wall-clock time.
//
//	minute hour day-of-month month day-of-week
//
// Each field accepts *, single values, ranges (1-5), lists (1,3,5) and steps
// (*/15, 8-18/2). Day-of-week 7 is accepted as Sunday. When both day fields
// are restricted a day matches if either matches, as in classic cron.
//
// Next evaluates in the location of the time it is given, so a schedule of
// "0 9 * * *" means 09:00 on the agent's configured clock.
package cron
