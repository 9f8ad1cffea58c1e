// Package relmap maps relationship classes onto the allocated layout.
//
// A relationship becomes either a foreign key column in the table of the end
// that can hold it, or a link table storing source and target ids:
//
//	(0..1):(0..*)  forward   ->  key column in the target's table
//	(0..*):(1..1)  backward  ->  key column in the source's table
//	(0..1):(0..1)  either    ->  key column on the side the direction points to
//	(0..*):(0..*)            ->  link table
//
// Relationship properties and the LinkTableRelationshipMap attribute force a
// link table. The key column is NOT NULL only when the referenced end is
// mandatory and every row of the holder table belongs to the relationship's
// holder classes.
package relmap
