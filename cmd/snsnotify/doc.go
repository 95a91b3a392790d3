// Command snsnotify publishes build lifecycle notifications to SNS topics and
// administers the job attachments and settings they use.
//
// Typical use from a build script:
//
//	snsnotify notify started --job api --number "$BUILD_NUMBER"
//	snsnotify notify completed --job api --number "$BUILD_NUMBER" --result FAILURE
//
// The command never fails a build because a notification could not be sent;
// problems are printed as WARNING lines. "snsnotify serve" runs the daemon in
// the foreground.
package main
