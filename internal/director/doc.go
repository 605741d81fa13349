// Package director orchestrates one scheduling turn per incoming message.
//
// For each trigger it rebuilds the recent transcript from the store, runs
// the context classifier and length strategist for the next scheduled
// speaker, invokes the generator under that directive, and then consults the
// reaction scheduler for every other agent — strictly one at a time, so each
// candidate sees the reactions already committed for the trigger. Rooms are
// serialized independently; two rooms never contend.
package director
