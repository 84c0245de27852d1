// Package deployer drives the remote exchange that turns a built
// .intunewin payload into an Intune Win32 app: create the app, upload the
// encrypted content through a delegated storage URI, commit it, wait for
// validation, activate the content version and assign the app.
package deployer
