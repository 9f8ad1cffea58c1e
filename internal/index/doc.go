// Package index derives the indexes of a layout.
//
// Mandatory indexes cover class id columns of shared tables, foreign key and
// relationship class id columns, and link table ends:
//
//	ix_<table>_ecclassid
//	ix_<table>_fk_<relationship>_<end>
//	ix_<table>_relecclassid_<relationship>
//	ix_<link>_source, ix_<link>_target, uix_<link>_sourcetargetclassid
//
// User indexes come from DbIndexList declarations. On tables shared with
// unrelated classes they are scoped to the numeric class ids of the declaring
// class and its descendants, and the scope grows as later imports add
// subclasses.
package index
