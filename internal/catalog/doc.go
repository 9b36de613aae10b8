// Package catalog manages the schedule catalog: named times of day
// ("Morning" → 08:00) referenced by id from schedule input.
//
// The catalog is the compiler's only lookup table. Listing is ordered by
// wall-clock time, matching how the entries are presented for selection.
package catalog
