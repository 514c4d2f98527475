// Command lighthouse signs in with Google or email/password, hands a Gmail grant to the
// lighthouse server and prints the most recent messages.
package main

func main() {
	Execute()
}
