// Package catalog is the core of the shelf catalog: genres, authors, books and
// book instances, the rules that keep references between them consistent, and
// the staged seeder that populates a store from a dataset.
//
// Books reference one author and any number of genres; book instances
// reference one book. References must resolve when written. Authors and genres
// that books still reference cannot be deleted ([Guard], [Service.DeleteAuthor]);
// books can always be deleted, leaving their instances in place.
//
// Genre names are unique under case-insensitive collation ([NameKey]).
package catalog
