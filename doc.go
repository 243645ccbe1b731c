/*
Package ussdpilot automates USSD sessions by driving a phone's system dialer UI.

An Engine observes UI-tree snapshots of the dialer, classifies every screen
with keyword heuristics, and drives the session: it types queued steps into
input fields, confirms prompts, dismisses terminal dialogs and resolves exactly
one Result per session. It was built to turn confirmed payments into
mobile-money payouts through carrier menus such as *185#.

# Architecture

The engine is hexagonal. The core (pkg/session, pkg/flatten, pkg/classify,
pkg/executor) knows nothing about Android. A host provides two ports:

  - ports.Dialer starts a session for a code.
  - ports.SnapshotFeed delivers dialer snapshots as the screen changes.

pkg/adapters/adb drives a real device over adb, pkg/adapters/replay plays back
scripted dialogs, and pkg/adapters/memory accepts snapshots pushed in-process.

# Usage

	host := replay.NewHost(scenario)
	eng, err := ussdpilot.New(host, ussdpilot.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close(context.Background())

	go ussdpilot.NewRunner(eng).Run(ctx, host)

	res, err := eng.Run(ctx, "*185*9*0772123456*50000#", domain.Step{Value: "1234", Secret: true})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Success, res.TransactionID)

Only one session runs at a time. A Dial while another session is active
resolves immediately with Outcome "busy". Use Available to check first.
*/
package ussdpilot
