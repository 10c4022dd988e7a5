// Package paginate splits the stored records of a type into pages.
//
// An Adapter supplies the total count and one window of items; RecordAdapter
// implements it over a record.Repository. Paginator does the page
// arithmetic.
package paginate
