// Package area manages the hierarchy of areas (rooms, floors, zones)
// that devices are assigned to.
//
// Areas form a tree via ParentID. Parent assignments are validated with
// WouldCreateCycle before persistence so an area can never become its
// own ancestor, and BuildTree assembles the flat registry into a forest
// for the API.
package area
