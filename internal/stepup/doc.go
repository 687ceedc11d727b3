// Package stepup wraps the device biometric capability used to confirm
// sign-ins from devices that are not yet trusted.
//
// Hardware absence is reported as Unavailable and lets the sign-in continue.
// Every prompt failure, including errors from the platform, is Declined.
package stepup
